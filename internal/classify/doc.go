// Package classify calls the external advertisement classifier and
// applies its verdicts to stored transcript segments.
package classify
