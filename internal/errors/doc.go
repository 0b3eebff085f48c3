// Package errors provides structured, actionable error messages for the
// reactor command line.
//
// Each error has a code (e.g. "R101") that maps to a category, a short
// message and a longer explanation. Errors may carry a source location,
// surrounding lines, a hint and an example:
//
//	err := errors.New("R201").
//	    WithLocation("state.hcl", 3, 9).
//	    WithSuggestion("Only literal values are allowed in state files")
//
//	fmt.Print(err.Format())
//	// ERROR R201: Invalid state file
//	//
//	//   state.hcl:3:9
//	//
//	//       2 │ title = "hello"
//	//   →   3 │ count = other
//	//         │         ^
//	//       4 │
//	//
//	//   Hint: Only literal values are allowed in state files
//
// Library packages return plain sentinel errors; the CLI converts them with
// FromError before printing.
package errors
