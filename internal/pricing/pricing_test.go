package pricing

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func reply(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestGet(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		body string
		want string
	}{
		"plain":       {body: "Pro plan: $29/month\n", want: "Pro plan: $29/month"},
		"json string": {body: `"Basic plan: £0"`, want: "Basic plan: £0"},
		"json object": {body: `{"plan":"pro"}`, want: `{"plan":"pro"}`},
		"empty":       {body: "", want: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				DoAndReturn(func(req *http.Request) (*http.Response, error) {
					require.Equal(t, "http://pricing.local/plan", req.URL.String())
					return reply(http.StatusOK, tc.body), nil
				}).
				Times(1)

			// Act
			got, err := New("http://pricing.local/plan", httpClient).Get(t.Context())

			// Assert
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestGet_ErrStatus(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(reply(http.StatusServiceUnavailable, "down"), nil).Times(1)

	// Act
	_, err := New("http://pricing.local", httpClient).Get(t.Context())

	// Assert
	require.ErrorIs(t, err, ErrStatus)
	require.ErrorContains(t, err, "503")
}

func TestGet_BodyLimit(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		size    int
		wantErr bool
	}{
		"at limit":   {size: maxBody},
		"over limit": {size: maxBody + 1, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().Do(gomock.Any()).Return(reply(http.StatusOK, strings.Repeat("x", tc.size)), nil).Times(1)

			// Act
			got, err := New("http://pricing.local", httpClient).Get(t.Context())

			// Assert
			if tc.wantErr {
				require.ErrorIs(t, err, ErrTooLarge)
				require.Empty(t, got)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, tc.size)
		})
	}
}
