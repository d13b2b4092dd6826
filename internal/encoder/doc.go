// Package encoder runs transcoding tools for a profile.
//
// Adapters are selected by the encoder kind stored with each profile:
//
//	basic   runs the composed command and captures combined output
//	ffmpeg  runs ffmpeg with machine-readable progress and exposes the
//	        processed timecodes as a lazy sequence
//	drapto  drives the drapto library (AV1 in Matroska) in-process
//
// Every failure that comes out of an adapter is an *EncodeFailure carrying the
// composed command line and whatever output the tool produced. Kinds are
// resolved when the Registry is built so an unknown kind fails at startup
// rather than on the first task.
package encoder
