package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/fairkeep/pkg/api"
)

// ContactServiceName is the fully-qualified name of the ContactService.
const ContactServiceName = "fairkeep.v1.ContactService"

// Procedure paths of the ContactService.
const (
	ContactServiceSendContactRequestProcedure    = "/" + ContactServiceName + "/SendContactRequest"
	ContactServiceRespondContactRequestProcedure = "/" + ContactServiceName + "/RespondContactRequest"
	ContactServiceListContactsProcedure          = "/" + ContactServiceName + "/ListContacts"
)

// ContactServiceHandler is implemented by the server side of the ContactService.
type ContactServiceHandler interface {
	SendContactRequest(context.Context, *connect.Request[api.SendContactRequestRequest]) (*connect.Response[api.SendContactRequestResponse], error)
	RespondContactRequest(context.Context, *connect.Request[api.RespondContactRequestRequest]) (*connect.Response[api.RespondContactRequestResponse], error)
	ListContacts(context.Context, *connect.Request[api.ListContactsRequest]) (*connect.Response[api.ListContactsResponse], error)
}

// NewContactServiceHandler builds an HTTP handler for svc. It returns the path to
// mount the handler on.
func NewContactServiceHandler(svc ContactServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	sendContactRequest := connect.NewUnaryHandler(ContactServiceSendContactRequestProcedure, svc.SendContactRequest, opts...)
	respondContactRequest := connect.NewUnaryHandler(ContactServiceRespondContactRequestProcedure, svc.RespondContactRequest, opts...)
	listContacts := connect.NewUnaryHandler(ContactServiceListContactsProcedure, svc.ListContacts, opts...)
	return "/" + ContactServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ContactServiceSendContactRequestProcedure:
			sendContactRequest.ServeHTTP(w, r)
		case ContactServiceRespondContactRequestProcedure:
			respondContactRequest.ServeHTTP(w, r)
		case ContactServiceListContactsProcedure:
			listContacts.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ContactServiceClient is a client for the ContactService.
type ContactServiceClient interface {
	SendContactRequest(context.Context, *connect.Request[api.SendContactRequestRequest]) (*connect.Response[api.SendContactRequestResponse], error)
	RespondContactRequest(context.Context, *connect.Request[api.RespondContactRequestRequest]) (*connect.Response[api.RespondContactRequestResponse], error)
	ListContacts(context.Context, *connect.Request[api.ListContactsRequest]) (*connect.Response[api.ListContactsResponse], error)
}

// NewContactServiceClient creates a ContactService client for the server at baseURL.
func NewContactServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ContactServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &contactServiceClient{
		sendContactRequest:    connect.NewClient[api.SendContactRequestRequest, api.SendContactRequestResponse](httpClient, baseURL+ContactServiceSendContactRequestProcedure, opts...),
		respondContactRequest: connect.NewClient[api.RespondContactRequestRequest, api.RespondContactRequestResponse](httpClient, baseURL+ContactServiceRespondContactRequestProcedure, opts...),
		listContacts:          connect.NewClient[api.ListContactsRequest, api.ListContactsResponse](httpClient, baseURL+ContactServiceListContactsProcedure, opts...),
	}
}

type contactServiceClient struct {
	sendContactRequest    *connect.Client[api.SendContactRequestRequest, api.SendContactRequestResponse]
	respondContactRequest *connect.Client[api.RespondContactRequestRequest, api.RespondContactRequestResponse]
	listContacts          *connect.Client[api.ListContactsRequest, api.ListContactsResponse]
}

func (c *contactServiceClient) SendContactRequest(ctx context.Context, req *connect.Request[api.SendContactRequestRequest]) (*connect.Response[api.SendContactRequestResponse], error) {
	return c.sendContactRequest.CallUnary(ctx, req)
}

func (c *contactServiceClient) RespondContactRequest(ctx context.Context, req *connect.Request[api.RespondContactRequestRequest]) (*connect.Response[api.RespondContactRequestResponse], error) {
	return c.respondContactRequest.CallUnary(ctx, req)
}

func (c *contactServiceClient) ListContacts(ctx context.Context, req *connect.Request[api.ListContactsRequest]) (*connect.Response[api.ListContactsResponse], error) {
	return c.listContacts.CallUnary(ctx, req)
}
