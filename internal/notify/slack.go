package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier publica em um webhook compatível com Slack.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier devolve nil quando o webhook não está configurado.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *SlackNotifier) Canal() string { return "slack" }

func (s *SlackNotifier) Notify(ctx context.Context, ev Evento) error {
	if s == nil || s.webhookURL == "" {
		return errors.New("slack notifier não configurado")
	}

	body, err := json.Marshal(map[string]any{"text": formatSlackMessage(ev)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack respondeu %d", resp.StatusCode)
	}
	return nil
}

func formatSlackMessage(ev Evento) string {
	emoji := ":information_source:"
	switch ev.Tipo {
	case TipoJustificativaAprovada:
		emoji = ":white_check_mark:"
	case TipoJustificativaRejeitada:
		emoji = ":x:"
	case TipoJustificativaCriada:
		emoji = ":memo:"
	}
	if ev.Titulo != "" {
		return emoji + " *" + ev.Titulo + "*\n" + ev.Mensagem
	}
	return emoji + " " + ev.Mensagem
}
