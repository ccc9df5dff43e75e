// gcodegen-golden replays emitter scenarios and compares their output with
// the recorded .gcode golden files.
//
// Usage:
//
//	gcodegen-golden [--dir DIR] check [NAME...]
//	gcodegen-golden [--dir DIR] update [NAME...]
//	gcodegen-golden [--dir DIR] run NAME [--metrics]
//
// Examples:
//
//	# Verify every scenario under pkg/scenario/testdata
//	gcodegen-golden --dir pkg/scenario/testdata check
//
//	# Regenerate one golden file after an intended output change
//	gcodegen-golden --dir pkg/scenario/testdata update wipe-lift
//
//	# Print the G-code of a scenario with debug logging
//	gcodegen-golden --log-level debug run retract-basic
package main

func main() {
	Execute()
}
