// Package generator provides content generators for the optimization loop.
//
// Bedrock asks an Anthropic model on AWS Bedrock to explain winners and
// write new drafts. Static is a deterministic offline stand-in for local
// runs and tests.
package generator
