// Package tagstore maps audio file tags to and from the neutral field
// representation the rest of the system works with.
package tagstore
