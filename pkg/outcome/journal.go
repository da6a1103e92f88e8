package outcome

import (
	"context"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
)

// JournalSink records every event in the activity journal.
type JournalSink struct {
	journal *log.Journal
}

func NewJournalSink(journal *log.Journal) *JournalSink {
	return &JournalSink{journal: journal}
}

func (s *JournalSink) Name() string {
	return "journal"
}

func (s *JournalSink) Publish(_ context.Context, evt Event) error {
	level, message := log.LevelSuccess, "Mensagem enviada com sucesso"
	switch evt.Type {
	case EventReportSent:
		message = "Relatório enviado com sucesso"
	case EventDispatchFailed:
		level, message = log.LevelError, "Falha no envio da mensagem"
	case EventReportFailed:
		level, message = log.LevelError, "Falha no envio do relatório"
	}
	s.journal.Record(level, message, evt.Fields())
	return nil
}
