// Package apitest provides an in-process FinCERT API for tests.
//
// Server speaks mutual TLS with certificates issued by throwaway CAs,
// implements every endpoint the client uses, counts requests per route and
// can be scripted to answer a route with a sequence of status codes before
// serving it normally.
//
// Example:
//
//	srv := apitest.NewServer(t)
//	srv.AddBulletin(apitest.Bulletin{ID: "A", Hrid: "FinCERT-20240701-01", ...})
//	srv.Script(http.MethodGet, "/bulletins/A", 503, 503)
//	client := srv.ClientCertificate(t)
package apitest
