// Package config loads the two files the CLI stub needs: a YAML test-suite
// descriptor and a plain-text agents file. Parsing itself is a small
// convenience on top of the domain types in pkg/benchtypes, which is
// otherwise free of any file-format concern, the same split the teacher
// keeps between pkg/types and whatever loads a cluster's bootstrap config.
package config
