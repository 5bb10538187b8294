// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinhus/statistics-project/src/storage"
)

// ====================== 邮件处理器实现 ======================

// SourceAttachmentHandler 把邮件中的数据源附件保存为目标文件
type SourceAttachmentHandler struct {
	TargetPath string // 数据源文件路径，扩展名决定接受的附件类型
}

func NewSourceAttachmentHandler(targetPath string) *SourceAttachmentHandler {
	return &SourceAttachmentHandler{TargetPath: targetPath}
}

// Handle 保存第一个扩展名与目标文件一致的附件，返回是否保存
func (h *SourceAttachmentHandler) Handle(email *Email) (bool, error) {
	if email == nil {
		return false, nil
	}

	ext := strings.ToLower(filepath.Ext(h.TargetPath))
	for _, attachment := range email.Attachments {
		if strings.ToLower(filepath.Ext(attachment.Filename)) != ext {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(h.TargetPath), 0755); err != nil {
			return false, fmt.Errorf("创建目录失败: %w", err)
		}

		// 先写临时文件再重命名，避免读到半个文件
		tmp := h.TargetPath + ".part"
		if err := os.WriteFile(tmp, attachment.Content, 0644); err != nil {
			return false, fmt.Errorf("保存附件失败: %w", err)
		}
		if err := os.Rename(tmp, h.TargetPath); err != nil {
			return false, fmt.Errorf("替换数据文件失败: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// FetchLatestSource 从邮箱取最新的数据源附件写到handler.TargetPath
// 没有匹配的邮件或附件时保留原文件
func FetchLatestSource(mailService MailService, subject string, handler *SourceAttachmentHandler, logger *storage.Logger) error {
	email, err := CheckAndProcessEmails(mailService, subject, logger)
	if err != nil {
		return err
	}
	if email == nil {
		return nil
	}

	saved, err := handler.Handle(email)
	if err != nil {
		return fmt.Errorf("处理邮件失败(UID:%d): %w", email.UID, err)
	}
	if saved {
		logger.Info("数据源已从邮件更新: " + handler.TargetPath)
	} else {
		logger.Warning(fmt.Sprintf("邮件 %q 中没有%s附件", email.Subject, filepath.Ext(handler.TargetPath)))
	}
	return nil
}
