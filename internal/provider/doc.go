// Package provider implements the feature providers registered with the
// aggregators: index lookups, go/types queries run through the analyser,
// and external syntax checkers.
package provider
