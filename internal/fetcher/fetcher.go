package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/saudedigital/siasus-pa/internal/models"
	"github.com/saudedigital/siasus-pa/pkg/checksum"
)

// RemoteReader is the data stream of one retrieval. SetDeadline bounds the
// transfer so a stalled remote cannot hang a worker.
type RemoteReader interface {
	io.ReadCloser
	SetDeadline(t time.Time) error
}

// RemoteClient is the slice of an FTP session the fetcher needs. The
// production implementation wraps jlaffaye/ftp; tests substitute a fake.
type RemoteClient interface {
	FileSize(name string) (int64, error)
	Retr(name string) (RemoteReader, error)
	Quit() error
}

// Dialer opens a fresh remote session. Each fetch worker owns one session,
// so parallel downloads never share a control connection.
type Dialer func(ctx context.Context) (RemoteClient, error)

// NewFTPDialer connects anonymously to the archive host and changes into the
// dissemination directory.
func NewFTPDialer(host, dir string, timeout time.Duration) Dialer {
	return func(ctx context.Context) (RemoteClient, error) {
		conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
		}
		if err := conn.Login("anonymous", "anonymous"); err != nil {
			conn.Quit()
			return nil, fmt.Errorf("failed to login to %s: %w", host, err)
		}
		if err := conn.ChangeDir(dir); err != nil {
			conn.Quit()
			return nil, fmt.Errorf("failed to change to directory %s: %w", dir, err)
		}
		return &ftpSession{conn: conn}, nil
	}
}

type ftpSession struct {
	conn *ftp.ServerConn
}

func (s *ftpSession) FileSize(name string) (int64, error) {
	return s.conn.FileSize(name)
}

func (s *ftpSession) Retr(name string) (RemoteReader, error) {
	return s.conn.Retr(name)
}

func (s *ftpSession) Quit() error {
	return s.conn.Quit()
}

// Result reports the outcome of one candidate download.
type Result struct {
	Status    models.FetchStatus
	LocalPath string
	SizeBytes int64
	Checksum  string
	Err       *models.AppError
}

// Fetch downloads one candidate into destDir, bounding the whole transfer by
// timeout. A missing remote file or an empty retrieval yields NotFound; a
// deadline expiry, a size mismatch against the server's declared size, or
// any protocol failure yields FetchFailed.
func Fetch(client RemoteClient, identifier, destDir string, timeout time.Duration) Result {
	remoteSize := int64(-1)
	if size, err := client.FileSize(identifier); err == nil {
		remoteSize = size
	} else if isNotFound(err) {
		return Result{Status: models.StatusNotFound}
	}

	body, err := client.Retr(identifier)
	if err != nil {
		if isNotFound(err) {
			return Result{Status: models.StatusNotFound}
		}
		return Result{
			Status: models.StatusFailed,
			Err:    models.NewFileError(models.ErrFetchFailed, identifier, err),
		}
	}
	defer body.Close()

	// The dial timeout only covers connection establishment; the data
	// connection needs its own deadline or a stalled transfer blocks forever.
	if timeout > 0 {
		if err := body.SetDeadline(time.Now().Add(timeout)); err != nil {
			return Result{
				Status: models.StatusFailed,
				Err:    models.NewFileError(models.ErrFetchFailed, identifier, err),
			}
		}
	}

	localPath := filepath.Join(destDir, identifier)
	written, sum, err := writeTempFile(localPath, body)
	if err != nil {
		os.Remove(localPath)
		return Result{
			Status: models.StatusFailed,
			Err:    models.NewFileError(models.ErrFetchFailed, identifier, err),
		}
	}

	if written == 0 {
		os.Remove(localPath)
		return Result{Status: models.StatusNotFound}
	}

	// The archive occasionally serves short reads; compare against the
	// server-declared size before trusting the download.
	if remoteSize >= 0 && remoteSize != written {
		os.Remove(localPath)
		return Result{
			Status: models.StatusFailed,
			Err: models.NewFileError(models.ErrFetchFailed, identifier,
				fmt.Errorf("downloaded %d bytes but server declared %d", written, remoteSize)),
		}
	}

	return Result{
		Status:    models.StatusFetched,
		LocalPath: localPath,
		SizeBytes: written,
		Checksum:  sum,
	}
}

func writeTempFile(path string, body io.Reader) (int64, string, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create local file %s: %w", path, err)
	}
	defer file.Close()

	written, sum, err := checksum.CopyWithChecksum(file, body)
	if err != nil {
		return written, "", fmt.Errorf("failed to write local file %s: %w", path, err)
	}
	return written, sum, nil
}

func isNotFound(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code == ftp.StatusFileUnavailable
	}
	return false
}
