package parser

// skillsVocabulary 技能参考词表。画像抽取时在全文中做大小写不敏感的
// 子串匹配，命中则以此处的规范写法收录。
// 修改词表会改变既有文本的抽取结果，视为行为变更，需要评审。
var skillsVocabulary = []string{
	"JavaScript", "TypeScript", "Python", "Java", "C++", "C#", "Ruby", "PHP", "Go", "Rust", "Swift", "Kotlin",
	"React", "Angular", "Vue", "Node.js", "Express", "Django", "Flask", "Spring", "Laravel",
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "Cassandra", "DynamoDB",
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Jenkins", "Git", "CI/CD",
	"TensorFlow", "PyTorch", "scikit-learn", "Pandas", "NumPy",
	"HTML", "CSS", "Tailwind", "Bootstrap", "Sass",
	"REST", "GraphQL", "gRPC", "WebSocket",
	"Linux", "Bash", "Shell", "Terraform", "Ansible",
	"Machine Learning", "Deep Learning", "NLP", "Computer Vision",
	"Agile", "Scrum", "DevOps", "MLOps", "DataOps",
}
