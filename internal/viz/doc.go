// Package viz draws the cloth in a terminal.
//
// Rendering goes through a braille [Canvas]: every character cell holds a
// 2x4 block of dots, so an 80x24 terminal region gives a 160x96 dot
// raster. [Camera] orbits the origin and projects particle positions onto
// that raster; [DrawMesh] connects them along the triangle edges.
//
// [Model] is the Bubble Tea program behind `clothsim live`:
//
//	Space     pause / resume
//	G         toggle gravity
//	Up/Down   solver iterations
//	[ ]       grid size
//	R         reset to the rest grid
//	Left/Right, W/S  orbit
//	+ -       zoom
//	T         cycle themes
//	V         start / stop GIF recording
//	?         help
//	Q         quit
//
// [Menu] lists the configuration presets and starts a [Model] for the one
// selected.
package viz
