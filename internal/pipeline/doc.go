// Package pipeline drives a single document through the three phases of
// audiobook production: extract text, synthesize speech, combine audio. The
// runner checkpoints the job record after every transition, shares one
// retry budget across all phases, and resumes an interrupted job at the
// next unfinished phase instead of repeating completed work.
package pipeline
