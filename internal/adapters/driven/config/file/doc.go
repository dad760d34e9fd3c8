// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the tenk config directory (~/.tenk).
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable answer prompts with embedded defaults
package file
