// Package upload implements the first workflow stage: candidate files are
// validated against the allowed video types and the size limit, accepted files
// accumulate in the session selection, and Proceed gates the move to the
// options stage on a non-empty selection.
package upload
