//go:build gocv

package io

import (
	"image"
	"io"

	"gocv.io/x/gocv"
)

// encodeWebP goes through OpenCV since x/image only decodes WebP.
func encodeWebP(w io.Writer, img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.FileExt(".webp"), mat, []int{int(gocv.IMWriteWebpQuality), 100})
	if err != nil {
		return err
	}
	defer buf.Close()

	_, err = w.Write(buf.GetBytes())
	return err
}

func init() {
	RegisterEncoder("webp", false, encodeWebP)
}
