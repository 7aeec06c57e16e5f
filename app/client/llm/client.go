package llm

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"salesbot/app/config"

	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/net/proxy"
)

const (
	defaultTimeout   = 30 * time.Second
	proxyDialTimeout = 10 * time.Second
)

// NewHTTPClient returns a client that dials through the configured SOCKS5
// proxy, or directly when the proxy is disabled.
func NewHTTPClient(proxyCfg config.Proxy, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyCfg.Enabled {
		addr := net.JoinHostPort(proxyCfg.Host, strconv.Itoa(proxyCfg.Port))

		dialer, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{Timeout: proxyDialTimeout})
		if err != nil {
			return nil, oops.In("llm").With("proxy", addr).Wrapf(err, "failed to create SOCKS5 dialer")
		}

		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, oops.In("llm").With("proxy", addr).Errorf("SOCKS5 dialer does not support contexts")
		}

		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

func NewOpenAI(cfg config.ModelConfig, httpClient *http.Client) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = httpClient

	return openai.NewClientWithConfig(clientConfig)
}

func NewLangchain(cfg config.ModelConfig, httpClient *http.Client) (*lcopenai.LLM, error) {
	model, err := lcopenai.New(
		lcopenai.WithToken(cfg.Token),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithHTTPClient(httpClient),
		lcopenai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, oops.In("llm").With("model", cfg.Model).Wrapf(err, "failed to create langchain model")
	}

	return model, nil
}
