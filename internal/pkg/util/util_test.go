package util

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func TestResizeAvatar(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x++ {
		src.Set(x, x%480, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}

	out, err := ResizeAvatar(&buf, 256)
	if err != nil {
		t.Fatalf("ResizeAvatar() error = %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Fatalf("ResizeAvatar() bounds = %v, want 256x256", b)
	}
}

func TestResizeAvatarRejectsNonImage(t *testing.T) {
	if _, err := ResizeAvatar(bytes.NewReader([]byte("plain text")), 256); err == nil {
		t.Fatalf("ResizeAvatar() error = nil, want decode error")
	}
}

func TestValidateDTO(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
	}
	if err := ValidateDTO(&req{Email: "a@b.co"}); err != nil {
		t.Fatalf("ValidateDTO() error = %v", err)
	}
	if err := ValidateDTO(&req{Email: "nope"}); err == nil {
		t.Fatalf("ValidateDTO() error = nil, want failure")
	}

	type passwordReq struct {
		NewPassword string `json:"newPassword,omitempty" validate:"min=6"`
	}
	err := ValidateDTO(&passwordReq{NewPassword: "123"})
	if err == nil || !strings.Contains(err.Error(), "[newPassword]") || !strings.Contains(err.Error(), "[min]") {
		t.Fatalf("ValidateDTO() error = %v, want json field name and rule", err)
	}
}
