// Package media holds the transcoding data model: encoders, profiles, stored
// output files, and the media entity with its lifecycle transitions.
//
// The package is pure data plus state transitions. Persistence lives in the
// store package and task dispatch in the pipeline package, both of which
// import media and never the other way round.
//
// A media entity moves through three flags:
//
//	encoding  set on creation (and when the input is replaced) until complete
//	encoded   every requested profile produced a stored output
//	uploaded  set in the same transition as encoded
//
// Ready reports whether the output count matches the profile count and is the
// only gate for Complete.
package media
