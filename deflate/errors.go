package deflate

import "errors"

// Error kinds the decompressor can surface, per the format's error model:
// every failure is fatal and propagated unchanged, never retried.
var (
	ErrInvalidBlockType     = errors.New("deflate: invalid block type (BTYPE=3 is reserved)")
	ErrStoredLengthMismatch = errors.New("deflate: stored block LEN does not match ~NLEN")
	ErrInvalidDistance      = errors.New("deflate: match distance exceeds window fill")
	ErrInvalidCodeLengthRun = errors.New("deflate: code-length repeat symbol with no prior length")
)
