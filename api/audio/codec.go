package audio

import (
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	models "news-digest-api/api/models"
)

const encodingZstd = "zstd"

// Codec turns Audio into the cached JSON envelope and back. With compression enabled the
// payload is zstd-compressed before base64; decoding accepts both forms.
type Codec struct {
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

func NewCodec(compress bool) (*Codec, error) {
	c := &Codec{compress: compress}

	var err error
	if compress {
		c.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	c.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return c, nil
}

func (c *Codec) Encode(a models.Audio) ([]byte, error) {
	env := models.AudioEnvelope{ContentType: a.ContentType}
	payload := a.Data
	if c.compress {
		payload = c.encoder.EncodeAll(a.Data, nil)
		env.Encoding = encodingZstd
	}
	env.Base64Audio = base64.StdEncoding.EncodeToString(payload)

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audio envelope: %w", err)
	}
	return data, nil
}

func (c *Codec) Decode(data []byte) (models.Audio, error) {
	var env models.AudioEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.Audio{}, fmt.Errorf("failed to unmarshal audio envelope: %w", err)
	}

	payload, err := base64.StdEncoding.DecodeString(env.Base64Audio)
	if err != nil {
		return models.Audio{}, fmt.Errorf("failed to decode base64 audio: %w", err)
	}

	switch env.Encoding {
	case "":
	case encodingZstd:
		if payload, err = c.decoder.DecodeAll(payload, nil); err != nil {
			return models.Audio{}, fmt.Errorf("failed to decompress audio: %w", err)
		}
	default:
		return models.Audio{}, fmt.Errorf("unknown audio encoding %q", env.Encoding)
	}

	contentType := env.ContentType
	if contentType == "" {
		contentType = ContentTypeWAV
	}
	return models.Audio{Data: payload, ContentType: contentType}, nil
}

// Close releases the zstd workers.
func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	c.decoder.Close()
}
