package config

// DefaultSubject is used when no subject template is configured.
const DefaultSubject = "Opportunities at {company}"

// DefaultBody is used when neither message.body nor message.body_file
// is configured. Placeholders are filled per recipient.
const DefaultBody = `Dear {first_name},

I hope this message finds you well.

I am reaching out to express my interest in potential opportunities at
{company}. I have attached my resume for your consideration and would
welcome the chance to connect.

Thank you for your time.

Best regards
`
