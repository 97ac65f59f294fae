package stems

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/automixer/automix-go/internal/errors"
)

const remoteDialTimeout = 15 * time.Second

// RemoteEngine talks to an external separation service. The service
// exposes GET /healthz for probes and POST /separate taking a
// multipart upload; the response is a multipart body with one part per
// stem, named after the stem kind.
type RemoteEngine struct {
	baseURL         string
	client          *http.Client
	probeTimeout    time.Duration
	separateTimeout time.Duration
}

// NewRemoteEngine builds an engine for the given base URL. Timeouts
// are in seconds; zero values fall back to 3 s probe and 300 s
// separation deadlines.
func NewRemoteEngine(baseURL string, probeSeconds, separateSeconds int) *RemoteEngine {
	if probeSeconds <= 0 {
		probeSeconds = 3
	}
	if separateSeconds <= 0 {
		separateSeconds = 300
	}
	return &RemoteEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: remoteDialTimeout}).DialContext,
			},
		},
		probeTimeout:    time.Duration(probeSeconds) * time.Second,
		separateTimeout: time.Duration(separateSeconds) * time.Second,
	}
}

func (r *RemoteEngine) Name() string { return "remote" }

// IsAvailable probes the service health endpoint.
func (r *RemoteEngine) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for keep-alive
	return resp.StatusCode == http.StatusOK
}

// Separate uploads the track and decodes the multipart response.
func (r *RemoteEngine) Separate(ctx context.Context, data []byte, name string) (map[Kind]Stem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.separateTimeout)
	defer cancel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/separate", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("stems").
			Category(errors.CategoryNetwork).
			Context("engine", "remote").
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("stem service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(tail))).
			Component("stems").
			Category(errors.CategoryStemEngine).
			Context("engine", "remote").
			Build()
	}

	return parseStemResponse(resp)
}

// parseStemResponse reads one multipart part per stem. Parts with
// unknown names are skipped so the service can evolve.
func parseStemResponse(resp *http.Response) (map[Kind]Stem, error) {
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("unexpected stem service content type %q", resp.Header.Get("Content-Type"))
	}

	out := make(map[Kind]Stem)
	reader := multipart.NewReader(resp.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		kind := Kind(part.FormName())
		if !validKind(kind) {
			part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, err
		}
		out[kind] = Stem{Data: data, Ext: extFromFilename(part.FileName())}
	}
	return out, nil
}

func validKind(k Kind) bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

func extFromFilename(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" {
		return "wav"
	}
	return ext
}
