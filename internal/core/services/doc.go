// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// IndexBuilder turns documents into embedding records, Retriever applies
// the query policy over a vector index and AnswerService assembles the
// grounded prompt and degrades to a fallback answer when a collaborator
// fails. SettingsService maps the dotted configuration keys onto
// domain.AppSettings.
package services
