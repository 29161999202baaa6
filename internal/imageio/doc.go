// Package imageio holds the image and path helpers shared by capture and
// comparison: decoding files to 8-bit RGB, writing PNGs, and purging the
// images of a directory before a batch.
package imageio
