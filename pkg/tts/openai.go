package tts

import (
	"context"
	"errors"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

// OpenAI implements Synthesizer against the OpenAI speech endpoint. Output
// is 24kHz linear PCM; the codec bridge downsamples it to the telephony
// wire on the way out. Used as the fallback behind ElevenLabs in the
// default chain.
type OpenAI struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI synthesizer.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = string(openai.TTSModel1)
	cfg.VoiceID = string(openai.VoiceAlloy)
	cfg.OutputFormat = EncodingPCM24
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Stream starts streaming synthesis.
func (o *OpenAI) Stream(ctx context.Context, text string) (AudioStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.ModelID),
		Input:          text,
		Voice:          openai.SpeechVoice(o.config.VoiceID),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          o.config.Speed,
	})
	if err != nil {
		cancel()
		return nil, o.wrapError(err)
	}

	o.logger.Debug("stream started", "chars", len(text), "model", o.config.ModelID)

	return &httpStream{
		body:   resp,
		cancel: cancel,
		format: AudioFormat{
			Encoding:   EncodingPCM24,
			SampleRate: EncodingPCM24.SampleRate(),
			Channels:   1,
		},
	}, nil
}

// Health checks API reachability with a minimal models request.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return o.wrapError(err)
	}
	return nil
}

// Close releases provider resources.
func (o *OpenAI) Close() error {
	return nil
}

// wrapError converts go-openai errors into the package taxonomy so the
// guard can classify them by status code.
func (o *OpenAI) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Provider:   providerOpenAI,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Provider:   providerOpenAI,
		}
	}
	return WrapError(providerOpenAI, err)
}

// Verify OpenAI implements Synthesizer at compile time.
var _ Synthesizer = (*OpenAI)(nil)
