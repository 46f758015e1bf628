package ops

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/pathguard"
)

func (o *ops) decodeImage(raw string) (image.Image, string, error) {
	f, err := o.Guard.Open(raw)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", raw, err)
	}
	return img, format, nil
}

// encodeImage picks the encoder from the output extension.
func encodeImage(img image.Image, name string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case ".gif":
		err = gif.Encode(&buf, img, nil)
	case ".png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("unsupported output format %q", filepath.Ext(name))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func derivedName(input, suffix, ext string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if ext == "" {
		ext = filepath.Ext(input)
	}
	return base + suffix + ext
}

func (o *ops) resizeImage(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "image.png"))
	output := LocalPath(p.Get("output", derivedName(input, "-resized", "")))

	src, _, err := o.decodeImage(input)
	if err != nil {
		return "", err
	}
	b := src.Bounds()
	width := p.Int("width", b.Dx()/2)
	if width <= 0 || width > 4*b.Dx() {
		return "", fmt.Errorf("resize: invalid width %d for a %dpx image", width, b.Dx())
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	data, err := encodeImage(dst, output, 90)
	if err != nil {
		return "", err
	}
	if _, err := o.Guard.WriteFile(output, data, pathguard.CreateOnly); err != nil {
		return "", err
	}
	return fmt.Sprintf("Resized %s from %dx%d to %dx%d into %s", input, b.Dx(), b.Dy(), width, height, output), nil
}

func (o *ops) compressImage(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "image.png"))
	output := LocalPath(p.Get("output", derivedName(input, "-compressed", ".jpg")))
	quality := p.Int("quality", 50)
	if quality < 1 {
		quality = 1
	} else if quality > 100 {
		quality = 100
	}

	src, _, err := o.decodeImage(input)
	if err != nil {
		return "", err
	}
	data, err := encodeImage(src, output, quality)
	if err != nil {
		return "", err
	}
	if _, err := o.Guard.WriteFile(output, data, pathguard.CreateOnly); err != nil {
		return "", err
	}

	before := int64(-1)
	if in, err := o.Guard.Resolve(input); err == nil {
		if info, err := os.Stat(string(in)); err == nil {
			before = info.Size()
		}
	}
	return fmt.Sprintf("Compressed %s (%d bytes) into %s (%d bytes, quality %d)", input, before, output, len(data), quality), nil
}

func (o *ops) transcribe(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "audio.mp3"))
	output := LocalPath(p.Get("output", derivedName(input, "-transcript", ".txt")))

	audio, err := o.Guard.Resolve(input)
	if err != nil {
		return "", err
	}
	if ok, _ := o.Guard.Exists(input); !ok {
		return "", operation.Errorf(operation.KindNotFound, input, "no such audio file")
	}
	if ok, err := o.Guard.Exists(output); err != nil {
		return "", operation.Wrap(operation.KindWriteDenied, output, err)
	} else if ok {
		return "", operation.Errorf(operation.KindWriteDenied, output, "file exists")
	}
	if _, err := o.Runner.LookPath("whisper"); err != nil {
		return "", fmt.Errorf("transcribe: whisper not installed: %w", err)
	}

	tmp, err := os.MkdirTemp("", "transcribe-")
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer os.RemoveAll(tmp)

	_, err = o.Runner.Run(ctx, tmp, "whisper", string(audio),
		"--output_format", "txt", "--output_dir", tmp)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(string(audio)), filepath.Ext(string(audio)))
	text, err := os.ReadFile(filepath.Join(tmp, stem+".txt"))
	if err != nil {
		return "", fmt.Errorf("transcribe: no transcript produced: %w", err)
	}
	if _, err := o.Guard.WriteFile(output, text, pathguard.CreateOnly); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(text)), nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts markdown source to an HTML fragment.
func RenderMarkdown(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *ops) convertMarkdown(ctx context.Context, p operation.Params) (string, error) {
	input := LocalPath(p.Get("input", "input.md"))
	output := LocalPath(p.Get("output", "output.html"))

	src, err := o.Guard.ReadFile(input)
	if err != nil {
		return "", err
	}
	html, err := RenderMarkdown(src)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", input, err)
	}
	if _, err := o.Guard.WriteFile(output, html, pathguard.CreateOnly); err != nil {
		return "", err
	}
	return fmt.Sprintf("Converted %s to %s", input, output), nil
}
