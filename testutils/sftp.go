//go:build !coverage

package testutils

import (
	"io"
	"log/slog"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type fileLister struct {
	files []os.FileInfo
}

func (fl *fileLister) ListAt(list []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(fl.files)) {
		return 0, io.EOF
	}

	n := copy(list, fl.files[offset:])
	if offset+int64(n) >= int64(len(fl.files)) {
		return n, io.EOF
	}

	return n, nil
}

// SftpHandler serves files straight from the local file system.
type SftpHandler struct{}

func (sh *SftpHandler) Filelist(req *sftp.Request) (sftp.ListerAt, error) {
	info, err := os.Stat(req.Filepath)
	if err != nil {
		return nil, err
	}

	return &fileLister{files: []os.FileInfo{info}}, nil
}

func (sh *SftpHandler) Filewrite(req *sftp.Request) (io.WriterAt, error) {
	slog.Debug("[sftp] writing file", slog.Any("file", req.Filepath))

	flags := req.Pflags()
	if flags.Append {
		return os.OpenFile(req.Filepath, os.O_WRONLY|os.O_CREATE, 0600)
	}

	return os.Create(req.Filepath)
}

func (sh *SftpHandler) Fileread(req *sftp.Request) (io.ReaderAt, error) {
	slog.Debug("[sftp] reading file", slog.Any("file", req.Filepath))

	return os.Open(req.Filepath)
}

func HandleSftpRequests(requests <-chan *ssh.Request, channel ssh.Channel) {
	for req := range requests {
		if req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp" {
			req.Reply(true, nil)

			server := sftp.NewRequestServer(channel, sftp.Handlers{
				FileGet:  &SftpHandler{},
				FilePut:  &SftpHandler{},
				FileList: &SftpHandler{},
			})

			if err := server.Serve(); err != nil && err != io.EOF {
				slog.Error("sftp server exited with error", slog.Any("error", err))
			}

			return
		}

		req.Reply(false, nil)
	}
}

func StartSftpServer(address string, privateKey string, numberOfConnections int, onClient func()) error {
	return StartSshServer(address, privateKey, numberOfConnections, onClient, HandleSftpRequests)
}
