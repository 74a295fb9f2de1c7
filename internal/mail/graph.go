package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	absauth "github.com/microsoft/kiota-abstractions-go/authentication"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	graphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	graphusers "github.com/microsoftgraph/msgraph-sdk-go/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Default Microsoft endpoints.
const (
	DefaultLoginBaseURL = "https://login.microsoftonline.com"
	DefaultGraphBaseURL = "https://graph.microsoft.com"
	GraphScope          = "https://graph.microsoft.com/.default"
)

// Attachment is a file sent with a message.
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Message is a plain-text email with attachments.
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Credentials identifies the service principal allowed to send mail.
type Credentials struct {
	Tenant       string
	ClientID     string
	ClientSecret string
}

// GraphClient sends mail through the Microsoft Graph SDK using an app-only
// token from the OAuth2 client-credentials grant.
type GraphClient struct {
	creds        Credentials
	loginBaseURL string
	graphBaseURL string
	httpClient   *http.Client
}

// Option customizes a GraphClient.
type Option func(*GraphClient)

// WithLoginBaseURL overrides the token authority, e.g. for tests.
func WithLoginBaseURL(u string) Option {
	return func(c *GraphClient) { c.loginBaseURL = strings.TrimRight(u, "/") }
}

// WithGraphBaseURL overrides the Graph API host, e.g. for tests.
func WithGraphBaseURL(u string) Option {
	return func(c *GraphClient) { c.graphBaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for both the token and send requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *GraphClient) { c.httpClient = hc }
}

// NewGraphClient creates a GraphClient for creds.
func NewGraphClient(creds Credentials, opts ...Option) *GraphClient {
	c := &GraphClient{
		creds:        creds,
		loginBaseURL: DefaultLoginBaseURL,
		graphBaseURL: DefaultGraphBaseURL,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TokenURL is the tenant's v2.0 token endpoint.
func (c *GraphClient) TokenURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginBaseURL, url.PathEscape(c.creds.Tenant))
}

// Token exchanges the client credentials for a bearer token.
func (c *GraphClient) Token(ctx context.Context) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     c.creds.ClientID,
		ClientSecret: c.creds.ClientSecret,
		TokenURL:     c.TokenURL(),
		Scopes:       []string{GraphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, errors.WithStack(fmt.Errorf("Token: client credentials exchange: %w", err))
	}
	return tok, nil
}

// Send obtains a token and posts msg to users/{from}/sendMail.
// No send request is made if the token exchange fails.
func (c *GraphClient) Send(ctx context.Context, msg Message) error {
	tok, err := c.Token(ctx)
	if err != nil {
		return err
	}

	rec := &statusRecorder{next: c.httpClient.Transport}
	if rec.next == nil {
		rec.next = http.DefaultTransport
	}
	client, err := c.serviceClient(tok.AccessToken, &http.Client{Transport: rec, Timeout: c.httpClient.Timeout})
	if err != nil {
		return errors.Wrap(err, "Send: creating Graph client")
	}

	err = client.Users().ByUserId(msg.From).SendMail().Post(ctx, newSendMailBody(msg), nil)
	if err == nil {
		return nil
	}
	if rec.status != 0 && (rec.status < 200 || rec.status > 299) {
		return errors.WithStack(&HTTPError{StatusCode: rec.status, Body: describe(err), Err: err})
	}
	return errors.Wrap(err, "Send: posting sendMail")
}

func (c *GraphClient) serviceClient(accessToken string, hc *http.Client) (*msgraphsdk.GraphServiceClient, error) {
	auth := absauth.NewBaseBearerTokenAuthenticationProvider(staticToken(accessToken))
	adapter, err := msgraphsdk.NewGraphRequestAdapterWithParseNodeFactoryAndSerializationWriterFactoryAndHttpClient(auth, nil, nil, hc)
	if err != nil {
		return nil, err
	}
	adapter.SetBaseUrl(c.graphBaseURL + "/v1.0")
	return msgraphsdk.NewGraphServiceClient(adapter), nil
}

// staticToken hands an already exchanged bearer token to the Graph adapter.
type staticToken string

func (t staticToken) GetAuthorizationToken(context.Context, *url.URL, map[string]interface{}) (string, error) {
	return string(t), nil
}

func (t staticToken) GetAllowedHostsValidator() *absauth.AllowedHostsValidator {
	return &absauth.AllowedHostsValidator{}
}

// statusRecorder keeps the status of the last response so failures can be
// reported as an HTTPError whatever error type the SDK produced.
type statusRecorder struct {
	next   http.RoundTripper
	status int
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.next.RoundTrip(req)
	if resp != nil {
		s.status = resp.StatusCode
	}
	return resp, err
}

func describe(err error) string {
	var oe *odataerrors.ODataError
	if errors.As(err, &oe) {
		if me := oe.GetErrorEscaped(); me != nil {
			var code, message string
			if me.GetCode() != nil {
				code = *me.GetCode()
			}
			if me.GetMessage() != nil {
				message = *me.GetMessage()
			}
			return strings.TrimSpace(code + " " + message)
		}
	}
	return err.Error()
}

// HTTPError is a non-2xx response from the send endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sendMail: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func newSendMailBody(msg Message) *graphusers.ItemSendMailPostRequestBody {
	body := graphmodels.NewItemBody()
	contentType := graphmodels.TEXT_BODYTYPE
	body.SetContentType(&contentType)
	body.SetContent(&msg.Body)

	recipients := make([]graphmodels.Recipientable, 0, len(msg.To))
	for _, addr := range msg.To {
		address := addr
		email := graphmodels.NewEmailAddress()
		email.SetAddress(&address)
		r := graphmodels.NewRecipient()
		r.SetEmailAddress(email)
		recipients = append(recipients, r)
	}

	attachments := make([]graphmodels.Attachmentable, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		name, ct := a.Name, a.ContentType
		fa := graphmodels.NewFileAttachment()
		fa.SetName(&name)
		fa.SetContentType(&ct)
		fa.SetContentBytes(a.Content)
		attachments = append(attachments, fa)
	}

	m := graphmodels.NewMessage()
	m.SetSubject(&msg.Subject)
	m.SetBody(body)
	m.SetToRecipients(recipients)
	if len(attachments) > 0 {
		m.SetAttachments(attachments)
	}

	req := graphusers.NewItemSendMailPostRequestBody()
	req.SetMessage(m)
	return req
}
