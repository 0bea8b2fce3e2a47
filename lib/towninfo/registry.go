package towninfo

import (
	"bytes"
	"context"
	"easymap-backend/lib/telemetry"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

const DefaultRegistryBaseURL = "https://api.nlsc.gov.tw/other"

// Registry lists the code/name records of a scope.
type Registry interface {
	Fetch(ctx context.Context, scope Scope) ([]Record, error)
}

type RegistryOptions struct {
	// defaults to DefaultRegistryBaseURL
	BaseURL string
	// defaults to 30 seconds
	Timeout time.Duration
	Proxy   string
}

// NLSCRegistry fetches code tables from the land surveying center's
// ListCounty and ListTown endpoints.
type NLSCRegistry struct {
	http *resty.Client
}

func NewNLSCRegistry(opts RegistryOptions) *NLSCRegistry {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultRegistryBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/"))
	client.SetTimeout(opts.Timeout)
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	telemetry.InstrumentResty(client, "easymap-backend/lib/towninfo/http")

	return &NLSCRegistry{http: client}
}

func registryPath(scope Scope) string {
	if scope.Level == LevelTown {
		return "/ListTown/" + url.PathEscape(scope.County)
	}
	return "/ListCounty"
}

func (r *NLSCRegistry) Fetch(ctx context.Context, scope Scope) ([]Record, error) {
	if scope.Level == LevelTown && scope.County == "" {
		return nil, &RemoteFetchError{Scope: scope, Err: errors.New("town scope without county code")}
	}

	res, err := r.http.R().
		SetContext(ctx).
		Get(registryPath(scope))
	if err != nil {
		return nil, &RemoteFetchError{Scope: scope, Err: err}
	}
	if !res.IsSuccess() {
		return nil, &RemoteFetchError{
			Scope:  scope,
			Status: res.StatusCode(),
			Err:    fmt.Errorf("unexpected status: %s", res.Status()),
		}
	}

	records, err := ParseRecords(scope.Level, res.Body())
	if err != nil {
		return nil, &RemoteFetchError{
			Scope:  scope,
			Status: res.StatusCode(),
			Err:    fmt.Errorf("parse xml: %w", err),
		}
	}
	return records, nil
}

// ParseRecords reads a registry listing, every child of the root element
// is a record whose children hold the code and the name. records missing
// either field are skipped.
func ParseRecords(level Level, body []byte) ([]Record, error) {
	codeField, nameField := level.fields()

	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel

	var (
		records []Record
		fields  map[string]string
		field   string
		text    strings.Builder
		depth   int
		sawRoot bool
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				sawRoot = true
			case 2:
				fields = map[string]string{}
			case 3:
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 3 {
				text.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				fields[field] = strings.TrimSpace(text.String())
			case 2:
				code := fields[codeField]
				name := fields[nameField]
				if code != "" && name != "" {
					records = append(records, Record{Code: code, Name: name})
				}
			}
			depth--
		}
	}

	if !sawRoot {
		return nil, errors.New("document has no root element")
	}
	return records, nil
}
