package fastspec

import "github.com/xyproto/env/v2"

// VerboseMode holds the FASTSPEC_VERBOSE setting, following the teacher's
// VerboseMode flag pattern (emit.go, jmp.go, cffi.go). No code in this
// package reads it: blueprint construction and materialization write no
// trace output.
var VerboseMode = env.Bool("FASTSPEC_VERBOSE")

// PageSize is the materializer's page-alignment unit for the anonymous
// executable mapping (§4.5). Overridable so tests can exercise the
// ceil-to-page-size rounding without depending on the host's actual page
// size.
var PageSize = env.Int("FASTSPEC_PAGE_SIZE", 4096)
