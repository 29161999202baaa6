// Package compare scores a current capture against its baseline.
//
// Compare aligns the current image to the baseline's size, reduces both to
// luminance, and computes the structural similarity index (SSIM) over 7x7
// windows together with the mean squared error. The per-pixel SSIM map is
// inverted into a grayscale image where bright pixels mark regions that
// differ. Classify turns a score into a verdict.
package compare
