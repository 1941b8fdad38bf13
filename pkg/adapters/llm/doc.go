// Package llm provides report summarizer implementations.
//
// The factory creates a summarizer based on provider configuration.
// Currently supports:
//   - Anthropic Claude
package llm
