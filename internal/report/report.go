package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	typDispatcher "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/types"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/artifact"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/directory"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/outcome"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/validation"
)

const eventSource = "api"

type Directory interface {
	LookupByTaxID(ctx context.Context, taxID string) (directory.Company, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, destination string, payload dispatch.Payload) dispatch.Outcome
}

type Publisher interface {
	Publish(evt outcome.Event)
}

type Readiness interface {
	IsReady() bool
}

type Controller struct {
	directory  Directory
	artifacts  *artifact.Store
	session    Readiness
	dispatcher Dispatcher
	publisher  Publisher
	journal    *log.Journal
	now        func() time.Time
}

// NewController wires the report endpoints. A nil directory makes every
// lookup answer 503.
func NewController(dir Directory, artifacts *artifact.Store, session Readiness, dispatcher Dispatcher, publisher Publisher, journal *log.Journal) *Controller {
	return &Controller{
		directory:  dir,
		artifacts:  artifacts,
		session:    session,
		dispatcher: dispatcher,
		publisher:  publisher,
		journal:    journal,
		now:        time.Now,
	}
}

func taxIDError(c *fiber.Ctx, err error) error {
	if errors.Is(err, validation.ErrMissingTaxID) {
		return router.ResponseError(c, http.StatusBadRequest, "MISSING_CNPJ", "CNPJ é obrigatório", nil)
	}
	return router.ResponseError(c, http.StatusBadRequest, "INVALID_CNPJ", "CNPJ deve ter 14 dígitos", nil)
}

// SendReport
// @Summary     Send Company Report
// @Description Look up the company by CNPJ and send its report file to its WhatsApp group, without caption
// @Tags        Report
// @Accept      json
// @Produce     json
// @Param       body body typDispatcher.RequestSendReport true "Company CNPJ"
// @Success     200 {object} typDispatcher.ResponseReportSent
// @Failure     400 {object} router.Response
// @Failure     404 {object} router.Response
// @Failure     503 {object} router.Response
// @Router      /api/enviar-relatorio [post]
func (ctl *Controller) SendReport(c *fiber.Ctx) error {
	started := ctl.now()

	var req typDispatcher.RequestSendReport
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	ctl.journal.Info("Iniciando envio de relatório", map[string]interface{}{"cnpj": req.CNPJ, "ip": c.IP()})

	taxID, err := validation.ValidateTaxID(req.CNPJ)
	if err != nil {
		ctl.journal.Error("CNPJ inválido", map[string]interface{}{"cnpj": req.CNPJ})
		return taxIDError(c, err)
	}

	ctx := router.RequestContext(c)
	if ctl.directory == nil {
		return router.ResponseError(c, http.StatusServiceUnavailable, "DIRECTORY_UNAVAILABLE", "Company directory is not configured", nil)
	}
	company, err := ctl.directory.LookupByTaxID(ctx, taxID)
	switch {
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, directory.ErrNoDestination):
		ctl.journal.Error("Empresa não encontrada", map[string]interface{}{"cnpj": taxID, "error": err.Error()})
		return router.ResponseError(c, http.StatusNotFound, "COMPANY_NOT_FOUND", err.Error(), nil)
	case err != nil:
		log.Print(c).WithError(err).Error("Directory lookup failed")
		ctl.journal.Error("Erro ao consultar empresa", map[string]interface{}{"cnpj": taxID, "error": err.Error()})
		return router.ResponseError(c, http.StatusInternalServerError, "DIRECTORY_ERROR", "Failed to query company directory", nil)
	}

	report, err := ctl.artifacts.Locate(taxID)
	if err != nil {
		path := artifact.ExpectedPath(err)
		ctl.journal.Error("Arquivo de relatório não encontrado", map[string]interface{}{
			"cnpj":    taxID,
			"empresa": company.Name,
			"path":    path,
		})
		return router.ResponseError(c, http.StatusNotFound, "REPORT_FILE_NOT_FOUND", err.Error(), fiber.Map{"expectedPath": path})
	}

	if ctl.session != nil && !ctl.session.IsReady() {
		ctl.journal.Error("WhatsApp não conectado", map[string]interface{}{"cnpj": taxID})
		return router.ResponseError(c, http.StatusServiceUnavailable, "WHATSAPP_DISCONNECTED", "WhatsApp não está conectado", nil)
	}

	data, mediaType, err := ctl.artifacts.Read(report)
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to read report file")
		return router.ResponseError(c, http.StatusNotFound, "REPORT_FILE_NOT_FOUND", err.Error(), fiber.Map{"expectedPath": report.Path})
	}

	log.DispatchOp("SendReport", company.Destination).
		WithField("cnpj", taxID).
		WithField("size", report.Size).
		Info("Sending report")

	out := ctl.dispatcher.Dispatch(ctx, company.Destination, dispatch.Payload{
		Binary: &dispatch.Binary{MediaType: mediaType, Data: data},
	})
	duration := ctl.now().Sub(started)

	ctl.publisher.Publish(outcome.NewReportEvent(eventSource, out, map[string]interface{}{
		"cnpj":     taxID,
		"empresa":  company.Name,
		"grupo":    company.Destination,
		"duration": duration.Milliseconds(),
	}))

	if !out.Success {
		message := "Erro ao enviar WhatsApp"
		if out.Error != nil {
			message = fmt.Sprintf("%s: %s", message, out.Error.Message)
		}
		return router.ResponseError(c, out.HTTPStatus(), "WHATSAPP_SEND_ERROR", message, out)
	}

	return router.ResponseSuccessWithData(c, "Relatório enviado", typDispatcher.ResponseReportSent{
		CNPJ:        taxID,
		Company:     company.Name,
		Destination: company.Destination,
		ChatID:      out.ChatID,
		MessageID:   out.MessageID,
		Timestamp:   out.Timestamp,
		Synthesized: out.Synthesized,
		File: typDispatcher.ResponseReportFile{
			Path:         report.Path,
			Size:         report.Size,
			LastModified: report.ModifiedAt.UTC().Format(dispatch.TimestampLayout),
			MediaType:    mediaType,
		},
		Meta: typDispatcher.ResponseReportMeta{
			Duration:    fmt.Sprintf("%dms", duration.Milliseconds()),
			ProcessedAt: ctl.now().UTC().Format(dispatch.TimestampLayout),
		},
	})
}

// CompanyInfo
// @Summary     Company Lookup
// @Description Show the directory entry and report file of a company
// @Tags        Report
// @Produce     json
// @Param       cnpj path string true "Company CNPJ"
// @Success     200
// @Failure     400 {object} router.Response
// @Router      /api/empresa/{cnpj} [get]
func (ctl *Controller) CompanyInfo(c *fiber.Ctx) error {
	taxID, err := validation.ValidateTaxID(c.Params("cnpj"))
	if err != nil {
		return taxIDError(c, err)
	}

	var company *directory.Company
	if ctl.directory != nil {
		found, err := ctl.directory.LookupByTaxID(router.RequestContext(c), taxID)
		switch {
		case err == nil:
			company = &found
		case errors.Is(err, directory.ErrNotFound), errors.Is(err, directory.ErrNoDestination):
		default:
			log.Print(c).WithError(err).Error("Directory lookup failed")
			return router.ResponseError(c, http.StatusInternalServerError, "DIRECTORY_ERROR", "Failed to query company directory", nil)
		}
	}

	var file *artifact.Info
	info, err := ctl.artifacts.Info(taxID)
	if err == nil {
		file = &info
	}

	return router.ResponseSuccessWithData(c, "Company information", fiber.Map{
		"empresa":      company,
		"arquivo":      file,
		"expectedPath": ctl.artifacts.Path(taxID),
		"status": fiber.Map{
			"empresaEncontrada": company != nil,
			"arquivoEncontrado": file != nil,
		},
	})
}

// ListReports
// @Summary     List Reports
// @Description List every report file found under the reports directory
// @Tags        Report
// @Produce     json
// @Success     200
// @Router      /api/relatorios [get]
func (ctl *Controller) ListReports(c *fiber.Ctx) error {
	reports, err := ctl.artifacts.List()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Print(c).WithError(err).Error("Failed to list reports")
		return router.ResponseInternalError(c, "Failed to list reports")
	}
	if reports == nil {
		reports = []artifact.Info{}
	}
	return router.ResponseSuccessWithData(c, "Reports", fiber.Map{
		"count":      len(reports),
		"basePath":   ctl.artifacts.Base(),
		"relatorios": reports,
	})
}
