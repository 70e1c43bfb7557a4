package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"kanzey-ticketing/internal/config"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/monitoring"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const maxBodyBytes = 1 << 20

type InitiateRequest struct {
	Provider        Provider
	Amount          decimal.Decimal
	RecipientNumber string
	RecipientEmail  string
	FirstName       string
	LastName        string
	CallbackURL     string
	ClientRef       string
}

type InitiateResult struct {
	TransactionID string
	Status        models.PaymentStatus
	RawStatus     string
	PaymentURL    string
	ServiceCode   string
	Raw           []byte
}

type VerifyResult struct {
	TransactionID string
	Status        models.PaymentStatus
	RawStatus     string
	IsPaid        bool
	Raw           []byte
}

// Gateway talks to the InTouch aggregator. One code path serves every rail;
// only the service code differs.
type Gateway struct {
	cfg         config.PaymentConfig
	frontendURL string
	hc          *http.Client
	log         *logger.Logger
}

func NewGateway(cfg config.PaymentConfig, frontendURL string, hc *http.Client, log *logger.Logger) *Gateway {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{cfg: cfg, frontendURL: frontendURL, hc: hc, log: log}
}

type additionalInfos struct {
	RecipientEmail     string `json:"recipientEmail,omitempty"`
	RecipientFirstName string `json:"recipientFirstName,omitempty"`
	RecipientLastName  string `json:"recipientLastName,omitempty"`
	Destinataire       string `json:"destinataire"`
	PartnerName        string `json:"partner_name"`
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
}

type initiateBody struct {
	IDFromClient     string          `json:"idFromClient"`
	AdditionnalInfos additionalInfos `json:"additionnalInfos"`
	Amount           json.Number     `json:"amount"`
	Callback         string          `json:"callback"`
	RecipientNumber  string          `json:"recipientNumber"`
	ServiceCode      string          `json:"serviceCode"`
}

func (g *Gateway) Initiate(ctx context.Context, req InitiateRequest) (res *InitiateResult, err error) {
	start := time.Now()
	defer func() { monitoring.ObserveProviderCall("initiate", string(req.Provider), start, err) }()

	serviceCode, err := ServiceCode(req.Provider)
	if err != nil {
		return nil, &Error{Op: "initiate", Provider: req.Provider, Err: err}
	}

	body, err := json.Marshal(initiateBody{
		IDFromClient: req.ClientRef,
		AdditionnalInfos: additionalInfos{
			RecipientEmail:     req.RecipientEmail,
			RecipientFirstName: req.FirstName,
			RecipientLastName:  req.LastName,
			Destinataire:       req.RecipientNumber,
			PartnerName:        g.cfg.PartnerName,
			ReturnURL:          g.frontendURL + "/payment-success",
			CancelURL:          g.frontendURL + "/payment-cancel",
		},
		Amount:          json.Number(req.Amount.String()),
		Callback:        req.CallbackURL,
		RecipientNumber: req.RecipientNumber,
		ServiceCode:     serviceCode,
	})
	if err != nil {
		return nil, &Error{Op: "initiate", Provider: req.Provider, Err: err}
	}

	g.log.LogPayment("INITIATE", req.ClientRef, fmt.Sprintf("%s %s via %s", req.Amount, serviceCode, req.Provider))

	raw, perr := g.do(ctx, http.MethodPut, g.endpoint("transaction"), body)
	if perr != nil {
		perr.Op, perr.Provider = "initiate", req.Provider
		return nil, perr
	}

	parsed := gjson.ParseBytes(raw)
	txID := firstString(parsed, "transactionId", "id")
	if txID == "" {
		return nil, &Error{Op: "initiate", Provider: req.Provider, Body: string(raw), Err: ErrMissingTransactionID}
	}
	rawStatus := firstString(parsed, "status")
	status := models.PaymentStatusPending
	if rawStatus != "" {
		status = NormalizeStatus(rawStatus)
	}

	return &InitiateResult{
		TransactionID: txID,
		Status:        status,
		RawStatus:     rawStatus,
		PaymentURL:    firstString(parsed, "paymentUrl", "payment_url"),
		ServiceCode:   serviceCode,
		Raw:           raw,
	}, nil
}

func (g *Gateway) Verify(ctx context.Context, transactionID string) (res *VerifyResult, err error) {
	start := time.Now()
	defer func() { monitoring.ObserveProviderCall("verify", "", start, err) }()

	raw, perr := g.do(ctx, http.MethodGet, g.endpoint("transaction", transactionID), nil)
	if perr != nil {
		perr.Op = "verify"
		return nil, perr
	}

	parsed := gjson.ParseBytes(raw)
	rawStatus := firstString(parsed, "status", "data.status")
	status := NormalizeStatus(rawStatus)
	return &VerifyResult{
		TransactionID: transactionID,
		Status:        status,
		RawStatus:     rawStatus,
		IsPaid:        IsPaid(status),
		Raw:           raw,
	}, nil
}

func (g *Gateway) endpoint(parts ...string) string {
	path := g.cfg.BaseURL + "/" + url.PathEscape(g.cfg.MerchantID)
	for _, p := range parts {
		path += "/" + url.PathEscape(p)
	}
	q := url.Values{}
	q.Set("loginAgent", g.cfg.LoginAgent)
	q.Set("passwordAgent", g.cfg.PasswordAgent)
	return path + "?" + q.Encode()
}

func (g *Gateway) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, *Error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(g.cfg.Username, g.cfg.Password)

	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(raw), Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if !gjson.ValidBytes(raw) {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(raw), Err: ErrUndecodableBody}
	}
	return raw, nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
