// Package types defines the Node value model, the module Descriptor, the
// store Config and the standard error values shared by every era package.
package types
