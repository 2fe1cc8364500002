package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// defaultMediaMaxBytes is the default max download size (Telegram Bot
// API's own file-size ceiling).
const defaultMediaMaxBytes int64 = 20 * 1024 * 1024

// maxImageDimension bounds the longest edge of an image block before
// it is attached to a dispatch, keeping the agent's stdin pipe from
// being inflated by a raw phone-camera photo.
const maxImageDimension = 1568

const downloadMaxRetries = 3

// buildContent derives the Channel Manager content payload for msg:
// a plain string when there is only text, or an ordered content-block
// sequence when a photo is attached (spec §3 Message content).
func (c *Channel) buildContent(ctx context.Context, msg *telego.Message) (any, error) {
	if len(msg.Photo) == 0 {
		if msg.Text == "" {
			return nil, nil
		}
		return msg.Text, nil
	}

	largest := msg.Photo[len(msg.Photo)-1]
	block, err := c.downloadAndSanitizeImage(ctx, largest.FileID)
	if err != nil {
		return nil, err
	}

	blocks := make([]protocol.ContentBlock, 0, 2)
	if msg.Caption != "" {
		blocks = append(blocks, protocol.TextBlock(msg.Caption))
	}
	blocks = append(blocks, *block)
	return blocks, nil
}

// downloadAndSanitizeImage downloads a Telegram photo by file_id,
// downsamples it with disintegration/imaging, and returns it as an
// inline base64 image content block.
func (c *Channel) downloadAndSanitizeImage(ctx context.Context, fileID string) (*protocol.ContentBlock, error) {
	data, err := c.download(ctx, fileID, c.cfg.MediaMaxBytes)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		// Not a format imaging understands; forward the original
		// bytes rather than failing the whole dispatch.
		block := protocol.ImageBlock("image/jpeg", base64.StdEncoding.EncodeToString(data))
		return &block, nil
	}

	if b := img.Bounds(); b.Dx() > maxImageDimension || b.Dy() > maxImageDimension {
		img = imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("telegram: encode sanitized image: %w", err)
	}

	block := protocol.ImageBlock("image/jpeg", base64.StdEncoding.EncodeToString(buf.Bytes()))
	return &block, nil
}

// download fetches a Telegram file by file_id with retry, enforcing maxBytes.
func (c *Channel) download(ctx context.Context, fileID string, maxBytes int64) ([]byte, error) {
	var file *telego.File
	var err error
	for attempt := 1; attempt <= downloadMaxRetries; attempt++ {
		file, err = c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
		if err == nil {
			break
		}
		if attempt < downloadMaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("telegram: get file info after %d attempts: %w", downloadMaxRetries, err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram: empty file path for %s", fileID)
	}
	if int64(file.FileSize) > maxBytes {
		return nil, fmt.Errorf("telegram: file too large: %d bytes (max %d)", file.FileSize, maxBytes)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.cfg.BotToken, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram: read file body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("telegram: file exceeds max size during download: %d bytes", len(data))
	}
	return data, nil
}
