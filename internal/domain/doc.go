// Package domain contains the core business entities of the concept
// hierarchy: concepts, their review lifecycle, and layout coordinates.
// It is independent of any storage technology or delivery mechanism.
package domain
