// Package pipeline owns the media transcoding lifecycle.
//
// Service.Save is the job dispatcher: it applies the pre-save transition,
// persists the entity, transfers the input to remote storage once, and fans
// out one encode task per requested profile, each linked to a store task.
// EncodeHandler runs the encoder adapter for one profile; StoreHandler
// uploads the resulting artifact to CDN storage, records it as an output,
// completes the entity once every profile has an output, and cleans up
// transient files.
//
// The media package stays free of orchestration; this package imports it and
// drives its transitions.
package pipeline
