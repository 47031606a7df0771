// internal/go2rtc/client.go
package go2rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnreachable marca falha de rede com o relay (timeout, connection
// refused). É um estado transitório: quem chamou decide se tenta de novo.
var ErrUnreachable = errors.New("go2rtc unreachable")

// IsUnreachable reporta se o erro veio de falha de rede com o relay.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// Producer é a ponta que entrega mídia para um stream no relay.
// Recv > 0 significa que o relay já recebeu bytes da fonte.
type Producer struct {
	URL  string `json:"url"`
	Recv int64  `json:"recv"`
	Send int64  `json:"send"`
}

type Stream struct {
	Producers []Producer `json:"producers"`
}

// HasData reporta se algum producer já recebeu bytes.
func (s Stream) HasData() bool {
	for _, p := range s.Producers {
		if p.Recv > 0 {
			return true
		}
	}
	return false
}

// Config é a seção relevante da configuração persistida do relay.
// Só mexemos em streams; o PATCH preserva o resto do documento.
type Config struct {
	Streams map[string]string `yaml:"streams"`
}

// Client fala com a API HTTP do go2rtc:
//   PUT    /api/streams?src&url  -> registra stream (hot-reload imediato)
//   DELETE /api/streams?src      -> remove stream
//   GET    /api/streams          -> catálogo com producers e contadores
//   GET    /api/config           -> YAML persistido
//   PATCH  /api/config           -> substitui seções do YAML persistido
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewClientFromEnv cria o client a partir de GO2RTC_URL.
func NewClientFromEnv() *Client {
	base := strings.TrimSpace(os.Getenv("GO2RTC_URL"))
	if base == "" {
		base = "http://go2rtc:1984"
	}
	return NewClient(base, 10*time.Second)
}

func (c *Client) BaseURL() string { return c.baseURL }

// Ping verifica se o relay está respondendo.
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// AddStream registra/atualiza um stream via API (ativação imediata).
func (c *Client) AddStream(ctx context.Context, id, sourceURL string) error {
	q := url.Values{}
	q.Set("src", id)
	q.Set("url", sourceURL)

	resp, err := c.do(ctx, http.MethodPut, "/api/streams?"+q.Encode(), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("add stream %s: status %s", id, resp.Status)
	}
	return nil
}

// RemoveStream remove um stream via API. Ausência não é erro: remover o
// que não existe é sucesso (no-op).
func (c *Client) RemoveStream(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("src", id)

	resp, err := c.do(ctx, http.MethodDelete, "/api/streams?"+q.Encode(), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return fmt.Errorf("remove stream %s: status %s", id, resp.Status)
}

// Streams devolve o catálogo de streams ativos.
func (c *Client) Streams(ctx context.Context) (map[string]Stream, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/streams", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list streams: status %s", resp.Status)
	}

	var streams map[string]Stream
	if err := json.NewDecoder(resp.Body).Decode(&streams); err != nil {
		return nil, fmt.Errorf("decode streams: %w", err)
	}
	return streams, nil
}

// GetConfig lê a configuração persistida do relay.
func (c *Client) GetConfig(ctx context.Context) (Config, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/config", nil, "")
	if err != nil {
		return Config{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Config{}, fmt.Errorf("get config: status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Streams == nil {
		cfg.Streams = make(map[string]string)
	}
	return cfg, nil
}

// PatchStreams substitui a seção streams da configuração persistida.
// É assim que um stream sobrevive a restart do relay sem outro PUT.
func (c *Client) PatchStreams(ctx context.Context, streams map[string]string) error {
	payload, err := yaml.Marshal(Config{Streams: streams})
	if err != nil {
		return fmt.Errorf("marshal config patch: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPatch, "/api/config", bytes.NewReader(payload), "text/yaml")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("patch config: status %s", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}
