// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/hflabs/suggestions"
)

// newExampleService returns a stand-in for the suggestion service.
func newExampleService() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/status/"):
			io.WriteString(w, `{"search":true,"enrich":true,"plan":"FREE"}`)
		case r.URL.Path == "/suggest/party":
			io.WriteString(w, `{"suggestions":[{"value":"ООО Ромашка","unrestricted_value":"ООО Ромашка","data":{"hid":"abc123","inn":"7707083893","qc":null}}]}`)
		case r.URL.Path == "/findById/party":
			io.WriteString(w, `{"suggestions":[{"value":"ООО Ромашка","unrestricted_value":"ООО Ромашка","data":{"hid":"abc123","inn":"7707083893","kpp":"773601001","qc":0}}]}`)
		default:
			io.WriteString(w, `{"suggestions":[]}`)
		}
	}))
}

// This example shows how to fetch company suggestions and select one,
// which completes the partial record with a follow-up request.
func Example_selectParty() {
	srv := newExampleService()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Point the configuration to the service and create an instance
	cfg := suggestions.NewConfig()
	cfg.ServiceURL = srv.URL
	cfg.Token = "demo-token"
	factory := suggestions.NewFactory(cfg)
	party := runtimex.PanicOnError1(factory.New(suggestions.Options{
		Type:        suggestions.TypeParty,
		Geolocation: suggestions.Bool(false),
	}))
	defer party.Dispose()

	// Fetch and select the first suggestion
	list := runtimex.PanicOnError1(party.Provider.FetchSuggestions(ctx, "ромашка"))
	fmt.Printf("%d suggestion(s)\n", len(list))
	selection := runtimex.PanicOnError1(party.Provider.SelectSuggestionByIndex(ctx, 0, "ромашка"))
	fmt.Printf("%s\n", selection.SuggestionValue)

	// The selection carries the complete record
	data := runtimex.PanicOnError1(suggestions.DecodeData[suggestions.PartyData](selection.Suggestion))
	fmt.Printf("inn=%s kpp=%s\n", data.INN, data.KPP)

	// Output:
	// 1 suggestion(s)
	// ООО Ромашка
	// inn=7707083893 kpp=773601001
}

// This example shows how an options update flows through the
// transforms registered on an instance.
func Example_optionsSpy() {
	srv := newExampleService()
	defer srv.Close()

	cfg := suggestions.NewConfig()
	cfg.ServiceURL = srv.URL
	factory := suggestions.NewFactory(cfg)
	in := runtimex.PanicOnError1(factory.New(suggestions.Options{Type: suggestions.TypeName}))
	defer in.Dispose()

	in.Spy.Subscribe("uppercase-partner", func(opts suggestions.Options) *suggestions.Options {
		return &suggestions.Options{Partner: strings.ToUpper(opts.Partner)}
	})
	in.SetOptions(suggestions.Options{Partner: "acme"})

	fmt.Printf("base=%s final=%s\n", in.Spy.BaseOptions().Partner, in.Options().Partner)
	fmt.Printf("%v\n", in.Spy.Subscribers())

	// Output:
	// base=acme final=ACME
	// [geolocation uppercase-partner]
}
