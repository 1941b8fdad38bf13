// Package flatten turns a verified multi-file source tree into one compilable unit.
//
// A Workspace materializes the tree in a private temporary directory, applying
// import remappings so every import names a file inside the workspace. A
// Flattener then concatenates the tree starting at the entry file:
//   - ConcatFlattener resolves imports itself
//   - CommandFlattener delegates to an external tool such as truffle-flattener
package flatten
