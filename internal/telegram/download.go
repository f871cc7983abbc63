package telegram

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/harhitroot/tgexport/pkg/export"
	"github.com/harhitroot/tgexport/pkg/logger"
)

// Downloader streams media bytes to local files. It implements
// export.MediaDownloader.
type Downloader struct {
	api *tg.Client
	dl  *downloader.Downloader
	log logger.Logger
}

// NewDownloader creates a media downloader on top of the client
func NewDownloader(client *Client, log logger.Logger) *Downloader {
	return &Downloader{
		api: client.API(),
		dl:  downloader.NewDownloader(),
		log: log,
	}
}

// Download fetches the message's media into path. The file is written to a
// .part temp file and renamed once the stream completes, so partial
// downloads never masquerade as finished artifacts.
func (d *Downloader) Download(ctx context.Context, msg export.Message, path string, onProgress func(got, total int64)) error {
	raw, ok := msg.Raw.(*tg.Message)
	if !ok || raw.Media == nil {
		return fmt.Errorf("message %d carries no downloadable media", msg.ID)
	}

	loc, total, err := fileLocation(raw.Media)
	if err != nil {
		return fmt.Errorf("message %d: %w", msg.ID, err)
	}

	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}

	w := &progressWriter{w: file, total: total, onProgress: onProgress}
	if _, err := d.dl.Download(d.api, loc).Stream(ctx, w); err != nil {
		file.Close()
		os.Remove(tmp)
		return wrapErr("download media", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close download file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize download: %w", err)
	}

	d.log.WithFields(map[string]interface{}{
		"message_id": msg.ID,
		"path":       path,
		"bytes":      w.got,
	}).Debug("media downloaded")

	return nil
}

// fileLocation builds the input file location for a media attachment
func fileLocation(mc tg.MessageMediaClass) (tg.InputFileLocationClass, int64, error) {
	switch mm := mc.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := mm.GetPhoto()
		if !ok {
			return nil, 0, fmt.Errorf("photo unavailable")
		}
		return photoLocation(photo)

	case *tg.MessageMediaDocument:
		doc, ok := mm.GetDocument()
		if !ok {
			return nil, 0, fmt.Errorf("document unavailable")
		}
		d, ok := doc.(*tg.Document)
		if !ok {
			return nil, 0, fmt.Errorf("document unavailable")
		}
		return &tg.InputDocumentFileLocation{
			ID:            d.ID,
			AccessHash:    d.AccessHash,
			FileReference: d.FileReference,
		}, d.Size, nil

	case *tg.MessageMediaWebPage:
		wp, ok := mm.Webpage.(*tg.WebPage)
		if !ok {
			return nil, 0, fmt.Errorf("webpage unavailable")
		}
		photo, ok := wp.GetPhoto()
		if !ok {
			return nil, 0, fmt.Errorf("webpage has no photo")
		}
		return photoLocation(photo)

	default:
		return nil, 0, fmt.Errorf("unsupported media type %T", mc)
	}
}

func photoLocation(pc tg.PhotoClass) (tg.InputFileLocationClass, int64, error) {
	p, ok := pc.(*tg.Photo)
	if !ok {
		return nil, 0, fmt.Errorf("photo unavailable")
	}

	thumbType, size := largestPhotoSize(p)
	if thumbType == "" {
		return nil, 0, fmt.Errorf("photo has no sizes")
	}

	return &tg.InputPhotoFileLocation{
		ID:            p.ID,
		AccessHash:    p.AccessHash,
		FileReference: p.FileReference,
		ThumbSize:     thumbType,
	}, size, nil
}

// progressWriter forwards byte counts to the progress callback
type progressWriter struct {
	w          io.Writer
	got        int64
	total      int64
	onProgress func(got, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.got += int64(n)
	if p.onProgress != nil {
		p.onProgress(p.got, p.total)
	}
	return n, err
}
