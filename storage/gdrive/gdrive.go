package gdrive

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/comoco/mysqldump/storage"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type GDrive struct {
	// email of your google cloud service account
	Email string `yaml:"email" json:"client_email,omitempty"`
	// private key of your google cloud service account
	PrivateKey string `yaml:"privatekey" json:"private_key,omitempty"`
	FileName   string `yaml:"filename"`
	FolderId   string `yaml:"folderid"`

	endpoint string
}

func (gdrive *GDrive) createService(ctx context.Context) (*drive.Service, error) {
	conf := &jwt.Config{
		Email:      gdrive.Email,
		PrivateKey: []byte(gdrive.PrivateKey),
		Scopes: []string{
			drive.DriveScope,
		},
		TokenURL: google.JWTTokenURL,
	}

	opts := []option.ClientOption{option.WithHTTPClient(conf.Client(ctx))}
	if gdrive.endpoint != "" {
		opts = append(opts, option.WithEndpoint(gdrive.endpoint))
	}

	return drive.NewService(ctx, opts...)
}

func (gdrive *GDrive) Save(reader io.Reader, pathGenerator storage.PathGeneratorFunc) error {
	ctx := context.Background()

	service, err := gdrive.createService(ctx)
	if err != nil {
		return fmt.Errorf("could not create drive client error: %v", err)
	}

	driveFile := &drive.File{Name: pathGenerator(gdrive.FileName)}

	if gdrive.FolderId != "" {
		driveFile.Parents = []string{gdrive.FolderId}
	}

	file, err := service.Files.Create(driveFile).
		Media(reader).
		ProgressUpdater(func(current, total int64) {
			slog.Debug("uploading dump to google drive", slog.Int64("current", current), slog.Int64("total", total))
		}).
		Context(ctx).
		Do()

	if err != nil {
		return fmt.Errorf("failed to upload file to google drive: %v", err)
	}

	slog.Debug("uploaded dump to google drive", slog.String("id", file.Id), slog.String("name", file.Name))

	return nil
}
