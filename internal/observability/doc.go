// Package observability records pipeline events to an append-only JSON Lines
// log and derives admissions metrics and alerts from it on demand. Alerts
// can be pushed to Slack.
package observability
