package homework

import "fmt"

// Verdicts maps every known review status to its sentence. Read-only.
var Verdicts = map[string]string{
	"approved":  "Работа проверена: ревьюеру всё понравилось. Ура!",
	"reviewing": "Работа взята на проверку ревьюером.",
	"rejected":  "Работа проверена: у ревьюера есть замечания.",
}

// Resolve builds the status-change message for one submission.
func Resolve(s Submission) (string, error) {
	name, err := stringField(s, FieldName)
	if err != nil {
		return "", err
	}
	status, err := stringField(s, FieldStatus)
	if err != nil {
		return "", err
	}
	verdict, ok := Verdicts[status]
	if !ok {
		return "", &StatusError{Status: status}
	}
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", name, verdict), nil
}

func stringField(s Submission, key string) (string, error) {
	v, ok := s[key].(string)
	if !ok {
		return "", &FieldError{Field: key}
	}
	return v, nil
}
