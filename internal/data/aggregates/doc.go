// Package aggregates owns the transactional write paths of the forms domain:
// binding writes onto subject records, question revisions, and submission
// drafts. Each aggregate composes table repos from internal/data/repos and
// guards its rows with row_version compare-and-set.
package aggregates
