package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notification_rules (
  id                   TEXT PRIMARY KEY,
  name                 TEXT NOT NULL,
  case_regex           TEXT NOT NULL,
  case_template        TEXT NOT NULL,
  header_template      TEXT NOT NULL,
  body_template        TEXT NOT NULL,
  subscribers_template TEXT NOT NULL,
  created_at           TIMESTAMPTZ NOT NULL,
  updated_at           TIMESTAMPTZ NOT NULL
)
`

const insertRuleSQL = `
INSERT INTO notification_rules (
  id, name, case_regex, case_template, header_template,
  body_template, subscribers_template, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`

const getRuleSQL = `
SELECT id, name, case_regex, case_template, header_template,
       body_template, subscribers_template, created_at, updated_at
FROM notification_rules WHERE id = $1
`

const listRulesSQL = `
SELECT id, name, case_regex, case_template, header_template,
       body_template, subscribers_template, created_at, updated_at
FROM notification_rules
ORDER BY created_at ASC, id ASC
`

const updateRuleSQL = `
UPDATE notification_rules SET
  name=$2, case_regex=$3, case_template=$4, header_template=$5,
  body_template=$6, subscribers_template=$7, updated_at=$8
WHERE id=$1
`

const deleteRuleSQL = `DELETE FROM notification_rules WHERE id = $1`
