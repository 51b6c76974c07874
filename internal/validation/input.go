package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxGigTitleLength        = 200
	MaxGigDescriptionLength  = 5000
	MaxGigRequirementsLength = 5000
	MaxCategoryLength        = 64
	MaxProposalLength        = 2000
	MaxEstimatedHours        = 10000
	MaxDeliverableTitle      = 200
	MaxDeliverableContent    = 100000
	MaxExternalLinkLength    = 2000
	MaxReasonLength          = 2000
	MaxEvidenceLength        = 10000
	MaxMessageLength         = 5000
	MaxFeedbackLength        = 5000
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateRequired непустая строка не длиннее max.
func ValidateRequired(fieldName, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s обязательно", fieldName)
	}
	return ValidateLength(fieldName, value, 0, max)
}

// ValidateGig проверяет текстовые поля задания.
func ValidateGig(title, description, requirements, category string) error {
	if err := ValidateRequired("название задания", title, MaxGigTitleLength); err != nil {
		return err
	}
	if err := ValidateRequired("описание задания", description, MaxGigDescriptionLength); err != nil {
		return err
	}
	if err := ValidateLength("требования", requirements, 0, MaxGigRequirementsLength); err != nil {
		return err
	}
	return ValidateLength("категория", category, 0, MaxCategoryLength)
}

// ValidateProposal проверяет текст и оценку ставки.
func ValidateProposal(proposal string, hours float64) error {
	if err := ValidateRequired("текст предложения", proposal, MaxProposalLength); err != nil {
		return err
	}
	if hours <= 0 || hours > MaxEstimatedHours {
		return fmt.Errorf("оценка часов должна быть от 0 до %d", MaxEstimatedHours)
	}
	return nil
}

// ValidateDeliverable проверяет результат работы: нужен текст или ссылка.
func ValidateDeliverable(title, content, link string) error {
	if err := ValidateRequired("название результата", title, MaxDeliverableTitle); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" && strings.TrimSpace(link) == "" {
		return fmt.Errorf("нужен текст результата или ссылка")
	}
	if err := ValidateLength("текст результата", content, 0, MaxDeliverableContent); err != nil {
		return err
	}
	return ValidateExternalLink(link)
}

// ValidateExternalLink проверяет внешнюю ссылку. Пустая ссылка допустима.
func ValidateExternalLink(link string) error {
	linkStr := strings.TrimSpace(link)
	if linkStr == "" {
		return nil
	}

	if err := ValidateLength("внешняя ссылка", linkStr, 0, MaxExternalLinkLength); err != nil {
		return err
	}

	// Проверка формата URL
	parsedURL, err := url.Parse(linkStr)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return nil
}

// ValidateDisputeReason проверяет причину спора и доказательства.
func ValidateDisputeReason(reason, evidence string) error {
	if err := ValidateRequired("причина спора", reason, MaxReasonLength); err != nil {
		return err
	}
	return ValidateLength("доказательства", evidence, 0, MaxEvidenceLength)
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	return ValidateRequired("сообщение", content, MaxMessageLength)
}

// ValidateFeedback проверяет отзыв владельца на результат.
func ValidateFeedback(feedback string) error {
	return ValidateRequired("комментарий", feedback, MaxFeedbackLength)
}
