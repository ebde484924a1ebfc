// Package email entrega los correos del flujo de reset de contraseña.
//
// Sender es el colaborador que consume ResetService. SMTPSender usa go-mail;
// LogSender solo loguea (dev sin SMTP) y MemorySender guarda los mensajes
// para tests y entornos de prueba.
package email

import (
	"context"
	"sync"

	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/util"
)

// Message es un correo ya renderizado.
type Message struct {
	ToAddress string
	ToName    string
	Subject   string
	HTML      string
	Text      string
}

// Sender envía un mensaje. Un error se propaga al llamador del flujo.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender no envía nada: deja el mensaje en el log en nivel debug.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	logger.From(ctx).Debug("email not sent (log sender)",
		logger.Component("email.log"),
		logger.Email(util.MaskEmail(msg.ToAddress)),
		logger.String("subject", msg.Subject),
		logger.String("text", msg.Text),
	)
	return nil
}

// MemorySender acumula los mensajes enviados.
type MemorySender struct {
	mu   sync.Mutex
	sent []Message
	// Err, si no es nil, se devuelve en cada Send (simula SMTP caído).
	Err error
}

func (m *MemorySender) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent devuelve una copia de los mensajes enviados.
func (m *MemorySender) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Last devuelve el último mensaje o false si no hubo ninguno.
func (m *MemorySender) Last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}
