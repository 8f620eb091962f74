/*
go-highlight turns per frame object detections of a football match into
scored, non overlapping highlight clips.

Each match is processed by a Session which normalizes the detector output,
tracks objects across frames with stable ids, detects goals, saves and skill
moves from the track trajectories, then selects and assembles the highlight
segments when the match is finished.  Media extraction and persistence are
supplied through the clip.MediaExtractor and clip.Writer interfaces, with
GoCV and SQLite implementations in the media and store packages.

Independent matches can be run in parallel with a Runner.

See the highlights example for replaying recorded detection files.
*/
package highlight
