package contourbatch

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

const googleStoragePrefix = "gs://"

type ReaderAtCloser interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

// FileSource opens and lists files that live either on the local disk or, if
// prefixed with gs://, in Google Storage. A nil *FileSource, or one without a
// storage client, only understands local paths.
type FileSource struct {
	Client  *storage.Client
	Context context.Context
}

// NewFileSource creates a FileSource. A Google Storage client is only created
// if any of the given paths needs one, so purely local runs never touch
// default credentials.
func NewFileSource(ctx context.Context, paths ...string) (*FileSource, error) {
	out := &FileSource{Context: ctx}

	for _, p := range paths {
		if !IsGoogleStoragePath(p) {
			continue
		}

		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, pfx.Err(err)
		}
		out.Client = client
		break
	}

	return out, nil
}

// Close releases the storage client, if there is one.
func (s *FileSource) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}

	return s.Client.Close()
}

func IsGoogleStoragePath(p string) bool {
	return strings.HasPrefix(p, googleStoragePrefix)
}

// Join joins path elements onto base using forward slashes for Google Storage
// paths and the OS separator otherwise.
func Join(base string, elem ...string) string {
	if IsGoogleStoragePath(base) {
		parts := append([]string{strings.TrimPrefix(base, googleStoragePrefix)}, elem...)
		return googleStoragePrefix + path.Join(parts...)
	}

	return filepath.Join(append([]string{base}, elem...)...)
}

func (s *FileSource) ctx() context.Context {
	if s == nil || s.Context == nil {
		return context.Background()
	}

	return s.Context
}

func (s *FileSource) client(p string) (*storage.Client, error) {
	if s == nil || s.Client == nil {
		return nil, fmt.Errorf("%s: no Google Storage client was configured", p)
	}

	return s.Client, nil
}

func splitGoogleStoragePath(p string) (bucketName, objectName string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(p, googleStoragePrefix), "/", 2)
	if len(pathParts) != 2 {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// Open returns a handle to the file at p along with its size in bytes.
func (s *FileSource) Open(p string) (ReaderAtCloser, int64, error) {
	if IsGoogleStoragePath(p) {
		client, err := s.client(p)
		if err != nil {
			return nil, 0, err
		}

		bucketName, objectName, err := splitGoogleStoragePath(p)
		if err != nil {
			return nil, 0, err
		}

		wrappedHandle := &GSReaderAtCloser{
			ObjectHandle: client.Bucket(bucketName).Object(objectName),
			Context:      s.ctx(),
		}

		// Make a hard call to get the filesize
		attrs, err := wrappedHandle.ObjectHandle.Attrs(wrappedHandle.Context)
		if err != nil {
			return nil, 0, pfx.Err(fmt.Errorf("%s: %w", p, err))
		}

		return wrappedHandle, attrs.Size, nil
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, 0, err
	}
	fstat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	return f, fstat.Size(), nil
}

// ReadFile reads the whole file at p into memory.
func (s *FileSource) ReadFile(p string) ([]byte, error) {
	f, _, err := s.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ioutil.ReadAll(f)
}

// ReadDir lists the names of the files (not subdirectories) directly within
// dir, sorted by name.
func (s *FileSource) ReadDir(dir string) ([]string, error) {
	var names []string

	if IsGoogleStoragePath(dir) {
		client, err := s.client(dir)
		if err != nil {
			return nil, err
		}

		bucketName, prefix, err := splitGoogleStoragePath(strings.TrimSuffix(dir, "/") + "/")
		if err != nil {
			return nil, err
		}

		it := client.Bucket(bucketName).Objects(s.ctx(), &storage.Query{Prefix: prefix, Delimiter: "/"})
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			} else if err != nil {
				return nil, pfx.Err(fmt.Errorf("%s: %w", dir, err))
			}

			// Synthetic "directory" entries only carry a prefix
			if attrs.Prefix != "" {
				continue
			}

			name := strings.TrimPrefix(attrs.Name, prefix)
			if name == "" {
				continue
			}
			names = append(names, name)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// GSReaderAtCloser decorates a Google Storage object handle with Read and
// ReadAt.
type GSReaderAtCloser struct {
	*storage.ObjectHandle
	Context context.Context
	Reader  *storage.Reader
}

func (o *GSReaderAtCloser) Read(p []byte) (n int, err error) {
	if o.Reader == nil {
		o.Reader, err = o.NewReader(o.Context)
		if err != nil {
			return 0, err
		}
	}

	return o.Reader.Read(p)
}

// ReadAt satisfies io.ReaderAt. Note that this is dependent upon making p a
// buffer of the desired length to be read by NewRangeReader.
func (o *GSReaderAtCloser) ReadAt(p []byte, offset int64) (n int, err error) {
	rdr, err := o.NewRangeReader(o.Context, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rdr.Close()

	return io.ReadFull(rdr, p)
}

// Close closes the streaming reader, if Read was ever called.
func (o *GSReaderAtCloser) Close() error {
	if o.Reader == nil {
		return nil
	}

	err := o.Reader.Close()
	o.Reader = nil

	return err
}
