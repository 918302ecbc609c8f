package storage

import (
	"context"
	"sync"
)

// NoopUploader recusa uploads quando não há bucket configurado.
type NoopUploader struct{}

func (NoopUploader) Enviar(context.Context, Objeto) (Resultado, error) {
	return Resultado{}, ErrNaoConfigurado
}

// Memoria guarda objetos em memória. Usado em testes e no modo demonstração.
type Memoria struct {
	mu      sync.Mutex
	BaseURL string
	objetos map[string]Objeto
}

func (m *Memoria) Enviar(_ context.Context, obj Objeto) (Resultado, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objetos == nil {
		m.objetos = make(map[string]Objeto)
	}
	obj.Conteudo = append([]byte(nil), obj.Conteudo...)
	m.objetos[obj.Chave] = obj
	return Resultado{URL: m.BaseURL + "/" + obj.Chave}, nil
}

// Objeto devolve o objeto gravado sob a chave.
func (m *Memoria) Objeto(chave string) (Objeto, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objetos[chave]
	return obj, ok
}
